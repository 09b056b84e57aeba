/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package middlewares

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/retail-sensing/footfall-service/pkg/web"
)

// Logger middleware logs every request with its trace id and latency.
func Logger(next web.Handler) web.Handler {
	return web.Handler(func(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
		contextValues := ctx.Value(web.KeyValues).(*web.ContextValues)

		begin := time.Now()
		err := next(ctx, writer, request)

		log.WithFields(log.Fields{
			"Method":     request.Method,
			"RequestURI": request.RequestURI,
			"TraceID":    contextValues.TraceID,
			"Latency":    time.Since(begin).String(),
		}).Info("Request handled")

		return err
	})
}

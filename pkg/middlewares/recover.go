/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package middlewares

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/retail-sensing/footfall-service/pkg/web"
)

// Recover middleware converts handler panics into 500 responses so one bad
// request cannot take the service down.
func Recover(next web.Handler) web.Handler {
	return web.Handler(func(ctx context.Context, writer http.ResponseWriter, request *http.Request) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				contextValues := ctx.Value(web.KeyValues).(*web.ContextValues)
				log.WithFields(log.Fields{
					"Method":     request.Method,
					"RequestURI": request.RequestURI,
					"TraceID":    contextValues.TraceID,
					"Panic":      recovered,
				}).Error("Recovered from panic")
				err = errors.Errorf("panic: %v", recovered)
			}
		}()

		return next(ctx, writer, request)
	})
}

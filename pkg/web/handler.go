/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

// KeyValues is the context key for the per-request ContextValues.
const KeyValues ctxKey = 1

// ContextValues carries request-scoped values used for logging and tracing.
type ContextValues struct {
	TraceID    string
	Method     string
	RequestURI string
}

// Handler is the signature all API handlers implement. Returning an error
// delegates the response to web.Error.
type Handler func(ctx context.Context, writer http.ResponseWriter, request *http.Request) error

// ServeHTTP seeds the request context with trace values and invokes the
// handler chain.
func (handler Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	values := ContextValues{
		TraceID:    uuid.NewString(),
		Method:     request.Method,
		RequestURI: request.RequestURI,
	}
	ctx := context.WithValue(request.Context(), KeyValues, &values)

	if err := handler(ctx, writer, request); err != nil {
		Error(ctx, writer, err)
	}
}

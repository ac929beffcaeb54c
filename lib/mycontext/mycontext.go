package mycontext

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// CtxTraceContext is a context key for the trace context (used by mylog)
type CtxTraceContext struct{}

// CtxUserID is a context key for the resolved caller identity
type CtxUserID struct{}

func ContextFromHTTPRequest(r *http.Request) context.Context {
	var trace string

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	traceContext := r.Header.Get("X-Cloud-Trace-Context")
	traceParts := strings.Split(traceContext, "/")

	if len(traceParts) > 0 && len(traceParts[0]) > 0 {
		trace = fmt.Sprintf("projects/%s/traces/%s", projectID, traceParts[0])
	}

	ctx := context.WithValue(context.Background(), CtxTraceContext{}, trace)
	ctx = context.WithValue(ctx, CtxUserID{}, r.Header.Get("X-User-Id"))

	return ctx
}

func UserID(c context.Context) string {
	userID, ok := c.Value(CtxUserID{}).(string)
	if !ok {
		return ""
	}
	return userID
}

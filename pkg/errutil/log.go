// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error at Error level. Workflow errors built with oops
// get their code and attached context expanded into structured attributes;
// anything else is logged as a plain error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// Package llm is the language model boundary: one call, one raw reply.
package llm

import (
	"context"
	"errors"

	"github.com/rcliao/companion-brain/internal/model"
)

var (
	// ErrUpstream wraps every transport, status or timeout failure.
	ErrUpstream = errors.New("llm upstream failure")
	// ErrEmptyReply is returned when the model answered with nothing.
	ErrEmptyReply = errors.New("llm returned an empty reply")
)

// Request is one completion call. History is oldest first. A nil
// Temperature uses the client's configured value; zero is sent as zero.
type Request struct {
	System      string
	User        string
	History     []model.Message
	Temperature *float64
}

// Client completes a prompt. Any error means the caller must fall back.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MedGhazal/InvoiceGenerator/internal/auth"
)

// APIKeysCLI offers operational helpers to manage manager API keys without
// going through the HTTP surface.
type APIKeysCLI struct {
	service *auth.Service
}

// NewAPIKeysCLI constructs a new helper instance.
func NewAPIKeysCLI(service *auth.Service) (*APIKeysCLI, error) {
	if service == nil {
		return nil, errors.New("apikeys cli: service required")
	}
	return &APIKeysCLI{service: service}, nil
}

// IssueOptions configures the issue command.
type IssueOptions struct {
	UserID     int64
	Label      string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// IssueCommand mints a key and prints it once. Exit code 0 on success.
func (c *APIKeysCLI) IssueCommand(ctx context.Context, opts IssueOptions) int {
	clear, key, err := c.service.IssueKey(ctx, opts.UserID, opts.Label)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "issue key: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(map[string]any{
			"id":    key.ID,
			"label": key.Label,
			"key":   clear,
		})
		return 0
	}
	fmt.Fprintf(opts.Stdout, "key %d (%s): %s\n", key.ID, key.Label, clear)
	return 0
}

// ListCommand prints the user's keys without hashes.
func (c *APIKeysCLI) ListCommand(ctx context.Context, userID int64, stdout, stderr io.Writer) int {
	keys, err := c.service.ListKeys(ctx, userID)
	if err != nil {
		fmt.Fprintf(stderr, "list keys: %v\n", err)
		return 1
	}
	for _, key := range keys {
		state := "active"
		if !key.IsActive {
			state = "revoked"
		}
		fmt.Fprintf(stdout, "%d\t%s\t%s...\t%s\n", key.ID, key.Label, key.Prefix, state)
	}
	return 0
}

// RevokeCommand deactivates one key.
func (c *APIKeysCLI) RevokeCommand(ctx context.Context, userID, keyID int64, stderr io.Writer) int {
	if err := c.service.RevokeKey(ctx, userID, keyID); err != nil {
		fmt.Fprintf(stderr, "revoke key: %v\n", err)
		return 1
	}
	return 0
}

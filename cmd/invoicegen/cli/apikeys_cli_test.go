package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MedGhazal/InvoiceGenerator/internal/auth"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

type stubAuthRepo struct {
	users  map[int64]*auth.User
	keys   map[int64]*auth.APIKey
	nextID int64
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{users: map[int64]*auth.User{}, keys: map[int64]*auth.APIKey{}, nextID: 1}
}

func (r *stubAuthRepo) FindKeyByPrefix(_ context.Context, prefix string) (*auth.APIKey, error) {
	for _, key := range r.keys {
		if key.Prefix == prefix {
			return key, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubAuthRepo) FindUser(_ context.Context, id int64) (*auth.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *stubAuthRepo) InsertKey(_ context.Context, key *auth.APIKey) error {
	key.ID = r.nextID
	r.nextID++
	r.keys[key.ID] = key
	return nil
}

func (r *stubAuthRepo) RevokeKey(_ context.Context, userID, keyID int64) error {
	key, ok := r.keys[keyID]
	if !ok || key.UserID != userID {
		return shared.ErrNotFound
	}
	key.IsActive = false
	return nil
}

func (r *stubAuthRepo) ListKeys(_ context.Context, userID int64) ([]auth.APIKey, error) {
	var out []auth.APIKey
	for _, key := range r.keys {
		if key.UserID == userID {
			out = append(out, *key)
		}
	}
	return out, nil
}

func (r *stubAuthRepo) TouchKey(_ context.Context, id int64, at time.Time) error {
	return nil
}

func TestIssueCommandJSONSuccess(t *testing.T) {
	repo := newStubAuthRepo()
	repo.users[7] = &auth.User{ID: 7, Name: "Manager", IsActive: true}
	cli, err := NewAPIKeysCLI(auth.NewService(repo))
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.IssueCommand(context.Background(), IssueOptions{
		UserID:     7,
		Label:      "bookkeeping",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 0, exitCode)
	require.Empty(t, stderr.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Equal(t, "bookkeeping", out["label"])
	require.True(t, strings.HasPrefix(out["key"].(string), "ig_"))
}

func TestIssueCommandUnknownUser(t *testing.T) {
	cli, err := NewAPIKeysCLI(auth.NewService(newStubAuthRepo()))
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.IssueCommand(context.Background(), IssueOptions{
		UserID: 404,
		Stdout: stdout,
		Stderr: stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "issue key")
}

func TestListAndRevokeCommands(t *testing.T) {
	repo := newStubAuthRepo()
	repo.users[7] = &auth.User{ID: 7, Name: "Manager", IsActive: true}
	service := auth.NewService(repo)
	cli, err := NewAPIKeysCLI(service)
	require.NoError(t, err)

	_, key, err := service.IssueKey(context.Background(), 7, "bookkeeping")
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	require.Equal(t, 0, cli.RevokeCommand(context.Background(), 7, key.ID, stderr))

	stdout := new(bytes.Buffer)
	require.Equal(t, 0, cli.ListCommand(context.Background(), 7, stdout, stderr))
	require.Contains(t, stdout.String(), "revoked")
}

package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"clubops-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
}

func testClient(t *testing.T) (*Client, *[]recordedRequest) {
	t.Helper()

	cleanup := telemetry.SetupForTesting("test:discord")
	t.Cleanup(cleanup)

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path})
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{BotToken: "token", BaseURL: server.URL}), &requests
}

func TestAddMemberRoles(t *testing.T) {
	client, requests := testClient(t)

	err := client.AddMemberRoles(context.Background(), "g1", "m1", []string{"r1", "r2"})
	require.NoError(t, err)

	require.Equal(t, []recordedRequest{
		{Method: http.MethodPut, Path: "/guilds/g1/members/m1/roles/r1"},
		{Method: http.MethodPut, Path: "/guilds/g1/members/m1/roles/r2"},
	}, *requests)
}

func TestRemoveMemberRoles(t *testing.T) {
	client, requests := testClient(t)

	err := client.RemoveMemberRoles(context.Background(), "g1", "m1", []string{"r1"})
	require.NoError(t, err)

	require.Equal(t, []recordedRequest{
		{Method: http.MethodDelete, Path: "/guilds/g1/members/m1/roles/r1"},
	}, *requests)
}

func TestMemberRolesNoChanges(t *testing.T) {
	client, requests := testClient(t)

	require.NoError(t, client.AddMemberRoles(context.Background(), "g1", "m1", nil))
	require.NoError(t, client.RemoveMemberRoles(context.Background(), "g1", "m1", nil))
	require.Empty(t, *requests)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// remoteFlags selects a running server instead of the local database.
type remoteFlags struct {
	server string
	token  string
}

func (r *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.server, "server", "", "base URL of a running lingoroute server (e.g. http://localhost:8080)")
	cmd.Flags().StringVar(&r.token, "token", os.Getenv("LINGOROUTE_ADMIN_TOKEN"), "admin bearer token for --server")
}

func (r *remoteFlags) enabled() bool { return r.server != "" }

func (r *remoteFlags) client() *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(r.server, "/")).
		SetTimeout(2*time.Minute).
		SetHeader("Accept", "application/json")
	if r.token != "" {
		c.SetAuthToken(r.token)
	}
	return c
}

type apiError struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// do sends one request and decodes a 2xx body into out.
func (r *remoteFlags) do(method, path string, body, out any) error {
	req := r.client().R()
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		var e apiError
		if json.Unmarshal(resp.Body(), &e) == nil && e.Message != "" {
			msg := e.Message
			for k, v := range e.Fields {
				msg += fmt.Sprintf("\n  %s: %s", k, v)
			}
			return fmt.Errorf("%s %s: %s (%d)", method, path, msg, resp.StatusCode())
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

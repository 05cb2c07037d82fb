// Package main is a smoke-test utility for a running console server. It walks the
// happy path (health, register, login, create model, deploy, stats) against
// CONSOLE_URL (default http://localhost:3000) with a throwaway account, printing
// each status code and exiting non-zero on the first unexpected response.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(method, path string, body any, want int) map[string]any {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s: %v", path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		log.Fatalf("build %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	fmt.Printf("%-6s %-22s %d\n", method, path, resp.StatusCode)
	if resp.StatusCode != want {
		log.Fatalf("unexpected status %d (want %d): %s", resp.StatusCode, want, raw)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func main() {
	base := os.Getenv("CONSOLE_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	c.call(http.MethodGet, "/api/health", nil, http.StatusOK)

	email := fmt.Sprintf("smoke-%d@example.com", time.Now().UnixNano())
	creds := map[string]string{"email": email, "password": "smoke-test-password"}
	c.call(http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": creds["password"], "name": "Smoke Test",
	}, http.StatusCreated)

	login := c.call(http.MethodPost, "/api/auth/login", creds, http.StatusOK)
	c.token, _ = login["token"].(string)

	created := c.call(http.MethodPost, "/api/models", map[string]string{"name": "smoke-model", "type": "nlp"}, http.StatusCreated)
	model, _ := created["model"].(map[string]any)

	deployed := c.call(http.MethodPost, "/api/deployments", map[string]any{
		"model_id": model["id"], "name": "smoke-deployment",
	}, http.StatusCreated)
	if d, ok := deployed["deployment"].(map[string]any); ok {
		fmt.Printf("endpoint: %v\n", d["endpoint_url"])
	}

	stats := c.call(http.MethodGet, "/api/stats", nil, http.StatusOK)
	fmt.Printf("stats: %v\n", stats["stats"])
	fmt.Println("smoke test passed")
}

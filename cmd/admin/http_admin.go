package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:2567", "server base url")
	_ = fs.Parse(args)

	body, err := fetchState(&http.Client{Timeout: 5 * time.Second}, *baseURL)
	fmt.Println(string(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
}

// fetchState GETs the loopback-only admin state endpoint.
func fetchState(cl *http.Client, baseURL string) ([]byte, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/state"
	resp, err := cl.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return b, err
	}
	if resp.StatusCode/100 != 2 {
		return b, fmt.Errorf("status %d", resp.StatusCode)
	}
	return b, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// EndpointStatus is the health of one endpoint of a running server.
type EndpointStatus struct {
	Endpoint string `json:"endpoint"`
	URL      string `json:"url"`
	Up       bool   `json:"up"`
	Ready    bool   `json:"ready"`
	Error    string `json:"error,omitempty"`
}

type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running server",
		Long: `Query the health endpoints of the server at listen-addr and, when
configured, the observability server at metrics-addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := &http.Client{
				Timeout:   cfg.timeout,
				Transport: &http.Transport{TLSClientConfig: clientTLS(appCfg.TLS)},
			}
			serverURL := listenScheme(appCfg.TLS) + appCfg.ListenAddr + "/healthz"
			statuses := []EndpointStatus{probe(client, "server", serverURL)}
			if appCfg.MetricsAddr != "" {
				statuses = append(statuses, probe(client, "observability", "http://"+appCfg.MetricsAddr+"/healthz/readiness"))
			}
			return writeStatus(cmd.OutOrStdout(), statuses, cfg.jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "timeout per endpoint")

	return cmd
}

// probe reports an endpoint as up when it answers at all and as ready when
// it answers 200.
func probe(client *http.Client, name, url string) EndpointStatus {
	status := EndpointStatus{Endpoint: name, URL: url}
	resp, err := client.Get(url)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.Up = true
	status.Ready = resp.StatusCode == http.StatusOK
	if !status.Ready {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		status.Error = strings.TrimSpace(fmt.Sprintf("%d %s", resp.StatusCode, body))
	}
	return status
}

func writeStatus(w io.Writer, statuses []EndpointStatus, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Wrapf(err, "failed to marshal status")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ENDPOINT\tSTATUS\tURL\tDETAIL")
	for _, s := range statuses {
		state := "down"
		switch {
		case s.Ready:
			state = "ready"
		case s.Up:
			state = "not ready"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Endpoint, state, s.URL, s.Error)
	}
	return tw.Flush()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devmarvs/alice/internal/bridge"
)

type bridgeOptions struct {
	url     string
	timeout time.Duration
	mode    string
	user    string
}

var bridgeOpts bridgeOptions

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Call the chat backend API the way the chat UI does",
}

func init() {
	pf := bridgeCmd.PersistentFlags()
	pf.StringVar(&bridgeOpts.url, "url", "", "backend base URL (defaults to the configured one)")
	pf.DurationVar(&bridgeOpts.timeout, "timeout", 60*time.Second, "request timeout")

	chatCmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
			return c.SendMessage(cmd.Context(), bridge.ChatRequest{
				Message: strings.Join(args, " "),
				Mode:    bridgeOpts.mode,
				UserID:  bridgeOpts.user,
			})
		}),
	}
	chatCmd.Flags().StringVar(&bridgeOpts.mode, "mode", "", "chat mode")
	chatCmd.Flags().StringVar(&bridgeOpts.user, "user", "", "user id")

	bridgeCmd.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Query the backend health endpoint",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, _ []string) (bridge.Reply, error) {
				return c.Health(cmd.Context())
			}),
		},
		chatCmd,
		&cobra.Command{
			Use:   "upload <file>",
			Short: "Upload a file",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				f, err := os.Open(args[0])
				if err != nil {
					return bridge.Reply{}, err
				}
				defer f.Close()
				return c.UploadFile(cmd.Context(), filepath.Base(args[0]), f)
			}),
		},
		&cobra.Command{
			Use:   "user-get <user> <key>",
			Short: "Read a stored user value",
			Args:  cobra.ExactArgs(2),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				return c.UserGet(cmd.Context(), args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "user-set <user> <key> <value>",
			Short: "Store a user value; JSON values are sent as JSON",
			Args:  cobra.ExactArgs(3),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				return c.UserSet(cmd.Context(), bridge.UserValue{
					UserID: args[0],
					Key:    args[1],
					Value:  parseValue(args[2]),
				})
			}),
		},
		&cobra.Command{
			Use:   "user-list <user>",
			Short: "List stored values for a user",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				return c.UserList(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "scrape <url>",
			Short: "Ask the backend to scrape a URL",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				return c.Scrape(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "get <path> [key=value...]",
			Short: "GET an arbitrary backend path",
			Args:  cobra.MinimumNArgs(1),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				params, err := parseParams(args[1:])
				if err != nil {
					return bridge.Reply{}, err
				}
				return c.RawGet(cmd.Context(), args[0], params)
			}),
		},
		&cobra.Command{
			Use:   "post <path> [json]",
			Short: "POST a JSON body to an arbitrary backend path",
			Args:  cobra.RangeArgs(1, 2),
			RunE: withClient(func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error) {
				var body any
				if len(args) == 2 {
					if err := json.Unmarshal([]byte(args[1]), &body); err != nil {
						return bridge.Reply{}, fmt.Errorf("invalid JSON body: %w", err)
					}
				}
				return c.RawPost(cmd.Context(), args[0], body)
			}),
		},
	)
}

type bridgeCall func(cmd *cobra.Command, c *bridge.Client, args []string) (bridge.Reply, error)

func withClient(call bridgeCall) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		base := bridgeOpts.url
		if base == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			base = cfg.BackendURL
		}
		client := bridge.New(base).WithTimeout(bridgeOpts.timeout)

		reply, err := call(cmd, client, args)
		if err != nil {
			return err
		}
		return printReply(cmd.OutOrStdout(), reply)
	}
}

func printReply(w io.Writer, reply bridge.Reply) error {
	fmt.Fprintln(w, reply.String())
	if !reply.OK() {
		return fmt.Errorf("backend returned status %d", reply.Status)
	}
	return nil
}

// parseValue sends valid JSON as-is and anything else as a string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
		}
		params[key] = value
	}
	return params, nil
}

// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command bluebubbles-node runs a single BlueBubbles action against the
// configured server and prints the JSON response.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	flag "maunium.net/go/mauflag"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
	"github.com/aiku/bluebubbles-node/pkg/node"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// verifyAction checks connectivity instead of running a registered action.
const verifyAction = "verify"

var configPath = flag.MakeFull("c", "config", "The path to your config file.", "").String()
var writeExampleConfig = flag.MakeFull("e", "generate-example-config", "Save the example config to the config path and quit.", "false").Bool()
var simplify = flag.MakeFull("s", "simplify", "Reduce message responses to guid, text, sender, chat and date.", "false").Bool()
var listActions = flag.MakeFull("l", "list-actions", "List the available actions and quit.", "false").Bool()
var version = flag.MakeFull("v", "version", "View version and quit.", "false").Bool()
var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		"bluebubbles-node - run BlueBubbles server actions from the command line.",
		"bluebubbles-node [-hvles] [-c <path>] <action|verify> [key=value ...] [q.name=value ...]",
	)
	err := flag.Parse()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("bluebubbles-node %s (commit %s, built %s)\n", Tag, Commit, BuildTime)
		os.Exit(0)
	} else if *listActions {
		for _, act := range node.GetActions() {
			fmt.Printf("%-24s %s\n", act.Name, act.Description)
		}
		os.Exit(0)
	} else if *writeExampleConfig {
		path := *configPath
		if path == "" {
			path = "config.yaml"
		}
		if err = os.WriteFile(path, []byte(node.ExampleConfig), 0o600); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "Failed to write example config:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote example config to", path)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.PrintHelp()
		os.Exit(1)
	}

	cfg, err := node.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(11)
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(12)
	}
	zerolog.DefaultContextLogger = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := node.New(*cfg, *log)
	os.Exit(run(ctx, n, args[0], args[1:]))
}

func run(ctx context.Context, n *node.Node, action string, rawParams []string) int {
	if action == verifyAction {
		info, err := n.Verify(ctx)
		if err != nil {
			printError(err)
			return 1
		}
		return printJSON(info)
	}

	params, err := parseParams(rawParams)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 2
	}
	resp, err := n.Execute(ctx, action, params)
	if err != nil {
		printError(err)
		return 1
	}
	if *simplify {
		return printJSON(node.SimplifyMessages(resp.Body))
	}
	var out bytes.Buffer
	if err = json.Indent(&out, resp.Body, "", "  "); err != nil {
		_, _ = os.Stdout.Write(resp.Body)
		fmt.Println()
		return 0
	}
	fmt.Println(out.String())
	return 0
}

// parseParams turns key=value arguments into action parameters. Keys with a
// "q." prefix become queryParameters entries. Values that look like JSON
// arrays or objects are decoded.
func parseParams(args []string) (node.Parameters, error) {
	params := node.Parameters{}
	var query []bluebubbles.NameValuePair
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}
		if name, isQuery := strings.CutPrefix(key, "q."); isQuery {
			query = append(query, bluebubbles.NameValuePair{Name: name, Value: value})
			continue
		}
		params[key] = decodeValue(value)
	}
	if len(query) > 0 {
		params["queryParameters"] = query
	}
	return params, nil
}

func decodeValue(value string) any {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
		return value
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return value
	}
	return out
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to encode output:", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func printError(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
	var apiErr *bluebubbles.APIError
	if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
		for _, detail := range apiErr.Details() {
			_, _ = fmt.Fprintln(os.Stderr, "  -", detail)
		}
	}
}

// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package conveyctl provides an operator command-line tool for the
// Conveyor work queue: seed items from YAML files, inspect queue and
// worker state, and run the recovery and recrawl maintenance actions.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/datalode/conveyor/backend"
	"github.com/datalode/conveyor/queue"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

var q queue.Backend

// filterFlags are shared by every command that selects a subset of
// items.
var filterFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "source-system",
		Usage: "select items from this source system",
	},
	cli.StringFlag{
		Name:  "source-name",
		Usage: "select items from this source name",
	},
	cli.StringFlag{
		Name:  "run-id",
		Usage: "select items with this batch run ID",
	},
}

func filterFromContext(c *cli.Context) queue.ItemFilter {
	return queue.ItemFilter{
		SourceSystem: c.String("source-system"),
		SourceName:   c.String("source-name"),
		RunID:        c.String("run-id"),
	}
}

// seedFile is the YAML layout conveyctl seed reads: an optional batch
// run ID plus a list of work item envelopes.
type seedFile struct {
	RunID string                   `yaml:"run_id"`
	Items []map[string]interface{} `yaml:"items"`
}

var seed = cli.Command{
	Name:      "seed",
	Usage:     "enqueue work items from a YAML file",
	ArgsUsage: "FILE",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("seed needs exactly one file argument", 1)
		}
		raw, err := ioutil.ReadFile(c.Args().First())
		if err != nil {
			return err
		}
		var file seedFile
		if err = yaml.Unmarshal(raw, &file); err != nil {
			return err
		}

		created, duplicate := 0, 0
		for i, entry := range file.Items {
			item, err := queue.ItemFromMap(entry)
			if err != nil {
				return fmt.Errorf("item %d: %v", i, err)
			}
			if item.RunID == "" {
				item.RunID = file.RunID
			}
			isNew, err := q.Enqueue(item)
			if err != nil {
				return fmt.Errorf("item %d: %v", i, err)
			}
			if isNew {
				created++
			} else {
				duplicate++
			}
		}
		fmt.Printf("enqueued %d items (%d duplicates)\n", created, duplicate)
		return nil
	},
}

var stats = cli.Command{
	Name:  "stats",
	Usage: "show item counts by status",
	Flags: filterFlags,
	Action: func(c *cli.Context) error {
		summary, err := q.Summarize(filterFromContext(c))
		if err != nil {
			return err
		}
		fmt.Printf("pending:     %d\n", summary.Pending)
		fmt.Printf("  delayed:   %d\n", summary.Delayed)
		fmt.Printf("in progress: %d\n", summary.InProgress)
		fmt.Printf("completed:   %d\n", summary.Completed)
		fmt.Printf("failed:      %d\n", summary.Failed)
		fmt.Printf("skipped:     %d\n", summary.Skipped)
		fmt.Printf("total:       %d\n", summary.Total())
		return nil
	},
}

var list = cli.Command{
	Name:  "list",
	Usage: "list work items",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "status",
			Usage: "select items with this status",
		},
		cli.IntFlag{
			Name:  "limit",
			Value: 50,
			Usage: "show at most this many items",
		},
		cli.StringFlag{
			Name:  "previous",
			Usage: "resume listing after this item ID",
		},
	}, filterFlags...),
	Action: func(c *cli.Context) error {
		filter := filterFromContext(c)
		filter.Limit = c.Int("limit")
		filter.AfterID = c.String("previous")
		if s := c.String("status"); s != "" {
			var status queue.Status
			if err := status.UnmarshalText([]byte(s)); err != nil {
				return err
			}
			filter.Statuses = []queue.Status{status}
		}
		items, err := q.List(filter)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Printf("%s  %-11s  a%d  %s:%s:%s:%s\n",
				item.ID, item.Status, item.Attempt,
				item.SourceSystem, item.SourceName,
				item.ResourceType, item.ResourceID)
		}
		return nil
	},
}

var workers = cli.Command{
	Name:  "workers",
	Usage: "list workers with a recent heartbeat",
	Action: func(c *cli.Context) error {
		active, err := q.ListActive(0)
		if err != nil {
			return err
		}
		for _, hb := range active {
			fmt.Printf("%s  %-8s  %s pid %d  ok %d fail %d\n",
				hb.WorkerID, hb.State, hb.Hostname, hb.PID,
				hb.ItemsSucceeded, hb.ItemsFailed)
		}
		return nil
	},
}

var recrawl = cli.Command{
	Name:  "recrawl",
	Usage: "return completed items to the queue for a fresh pass",
	Flags: filterFlags,
	Action: func(c *cli.Context) error {
		reset, err := q.ResetForRecrawl(filterFromContext(c))
		if err != nil {
			return err
		}
		fmt.Printf("reset %d items\n", reset)
		return nil
	},
}

var recoverLeases = cli.Command{
	Name:  "recover",
	Usage: "return expired-lease items to the queue",
	Action: func(c *cli.Context) error {
		recovered, err := q.RecoverExpiredLeases()
		if err != nil {
			return err
		}
		fmt.Printf("recovered %d items\n", recovered)
		return nil
	},
}

func main() {
	storage := backend.Backend{Implementation: "memory"}
	app := cli.NewApp()
	app.Name = "conveyctl"
	app.Usage = "operate the Conveyor work queue"
	app.Flags = []cli.Flag{
		cli.GenericFlag{
			Name:  "backend",
			Value: &storage,
			Usage: "impl[:address] of the storage backend",
		},
		cli.StringFlag{
			Name:  "namespace",
			Usage: "table-name prefix for shared databases",
		},
	}
	app.Commands = []cli.Command{
		seed,
		stats,
		list,
		workers,
		recrawl,
		recoverLeases,
	}
	app.Before = func(c *cli.Context) (err error) {
		storage.Namespace = c.String("namespace")
		q, err = storage.Open()
		return
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

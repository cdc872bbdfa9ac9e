// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/choria-io/fisk"

	"github.com/choria-io/pexec/history"
)

type historyCommand struct {
	directory string
	jsonOut   bool
}

func registerHistoryCommand(app *fisk.Application) {
	cmd := &historyCommand{}

	hist := app.Command("history", "Manage recorded run events")
	hist.Flag("history", "Directory run events are recorded in").PlaceHolder("DIR").Required().StringVar(&cmd.directory)

	list := hist.Command("list", "List recorded run events").Default().Action(cmd.listAction)
	list.Flag("json", "Render events as JSON").UnNegatableBoolVar(&cmd.jsonOut)

	hist.Command("prune", "Remove all recorded run events").Action(cmd.pruneAction)
}

func (c *historyCommand) listAction(_ *fisk.ParseContext) error {
	store, err := history.NewDirectoryStore(c.directory, newLogger())
	if err != nil {
		return err
	}

	events, err := store.AllEvents()
	if err != nil {
		return err
	}

	if c.jsonOut {
		jb, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(jb))

		return nil
	}

	if len(events) == 0 {
		fmt.Println("No run events recorded")
		return nil
	}

	for _, event := range events {
		fmt.Printf("%s %s\n", event.TimeStamp.Local().Format("2006-01-02 15:04:05"), event)
	}

	return nil
}

func (c *historyCommand) pruneAction(_ *fisk.ParseContext) error {
	store, err := history.NewDirectoryStore(c.directory, newLogger())
	if err != nil {
		return err
	}

	removed, err := store.Prune()
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d run events\n", removed)

	return nil
}

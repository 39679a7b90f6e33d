package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rereminder/internal/events"
	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

func newPreviewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Emit one reminder now without changing the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := a.openResources(ctx)
			if err != nil {
				return err
			}
			defer res.Close()

			outs, err := a.buildOutputs(platform.ExecRunner{})
			if err != nil {
				return err
			}
			defer outs.Close()

			bus := events.NewEventBus(a.log("events"))
			var record reminders.FireRecord
			bus.Subscribe(reminders.EventFired, func(ev events.Event) error {
				return ev.Decode(&record)
			})

			handler := reminders.NewHandler(previewStore{res.store}, previewScheduler{}, outs.emitters,
				reminders.DefaultTexts(a.cfg.Language),
				reminders.Deps{Logger: a.log("preview"), Events: bus})
			handler.Fire(ctx)
			outs.Drain()

			if record.ID == "" {
				return fmt.Errorf("reminder was not delivered")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "notification: %s\n", describe(record.Notification))
			fmt.Fprintf(out, "vibration:    %s\n", describe(record.Vibration))
			fmt.Fprintf(out, "sound:        %s\n", describe(record.Sound))
			fmt.Fprintf(out, "speech:       %s\n", describe(record.Speech))
			return nil
		},
	}
}

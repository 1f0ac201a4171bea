package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"obraflow/pkg/schedule"
)

type calendarFlags struct {
	file     string
	weekdays []int
	holidays []string
}

func (f *calendarFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "calendar", "", "calendar file (.json or .yaml)")
	cmd.Flags().IntSliceVar(&f.weekdays, "weekdays", nil, "working weekdays, 0=Sunday..6=Saturday")
	cmd.Flags().StringSliceVar(&f.holidays, "holiday", nil, "holiday date YYYY-MM-DD, repeatable")
}

// build merges the file with the flags; flags win for weekdays and add holidays.
func (f *calendarFlags) build() (schedule.Calendar, error) {
	var cfg schedule.CalendarConfig
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return schedule.Calendar{}, fmt.Errorf("read calendar file: %w", err)
		}
		if err := decodeFile(f.file, data, &cfg); err != nil {
			return schedule.Calendar{}, fmt.Errorf("decode calendar file: %w", err)
		}
	}
	if len(f.weekdays) > 0 {
		cfg.WorkingWeekdays = schedule.Weekdays(f.weekdays)
	}
	cfg.Holidays = append(cfg.Holidays, f.holidays...)
	return schedule.NormalizeCalendar(&cfg), nil
}

func buildCalendarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Working calendar arithmetic",
	}
	cmd.AddCommand(buildShowCalendarCommand(), buildNextWorkingDayCommand(), buildAddDaysCommand())
	return cmd
}

func buildShowCalendarCommand() *cobra.Command {
	var (
		flags  calendarFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the normalized calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cal, err := flags.build()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, cal.Config())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func buildNextWorkingDayCommand() *cobra.Command {
	var flags calendarFlags

	cmd := &cobra.Command{
		Use:   "next-working-day DATE",
		Short: "Print DATE if it is a working day, else the next one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateArg(args[0])
			if err != nil {
				return err
			}
			cal, err := flags.build()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cal.AlignToWorkingDay(day))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func buildAddDaysCommand() *cobra.Command {
	var flags calendarFlags

	cmd := &cobra.Command{
		Use:   "add-days DATE N",
		Short: "Print the date N working days after DATE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateArg(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid day count %q", args[1])
			}
			cal, err := flags.build()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cal.AddBusinessDays(day, n))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func dateArg(s string) (schedule.Date, error) {
	d := schedule.ParseDate(s)
	if !d.Valid() {
		return d, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

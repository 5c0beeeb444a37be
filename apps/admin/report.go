package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core/mess"
)

func (cli *commandLine) syncAttendance(date string) error {
	d := mess.Today()
	if date != "" {
		var err error
		if d, err = mess.ParseDate(date); err != nil {
			return errors.Wrap(err, "-date")
		}
	}

	n, err := cli.messSvc.SyncAttendance(context.Background(), d)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d attendance records synced for %s\n", n, d)
	return nil
}

func (cli *commandLine) adjustment(uname string, rng mess.DateRange) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	adj, err := cli.messSvc.ComputeAdjustment(ctx, usr.ID, rng)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(adj.Days))
	for _, day := range adj.Days {
		skipped := make([]string, 0, len(day.SkippedMeals))
		for _, mt := range day.SkippedMeals {
			skipped = append(skipped, string(mt))
		}
		rows = append(rows, []string{
			day.Date.String(),
			strings.Join(skipped, ", "),
			strconv.FormatInt(day.Charge, 10),
			strconv.FormatInt(day.Refund, 10),
		})
	}

	fmt.Fprintln(cli.out, renderTitle(fmt.Sprintf("Adjustment of %s, %s", usr.Name, rng)))
	fmt.Fprintln(cli.out, renderTable([]string{"Date", "Skipped", "Charge", "Refund"}, rows))
	fmt.Fprintln(cli.out, renderTable([]string{"Charges", "Refunds", "Net", "Attendance"}, [][]string{{
		strconv.FormatInt(adj.TotalCharges, 10),
		strconv.FormatInt(adj.TotalRefunds, 10),
		strconv.FormatInt(adj.NetAmount, 10),
		fmt.Sprintf("%d/%d (%.1f%%)", adj.Attendance.Attended, adj.Attendance.Marked, adj.Attendance.Percentage),
	}}))
	return nil
}

func (cli *commandLine) wastage(rng mess.DateRange) error {
	report, err := cli.messSvc.ComputeWastageReport(context.Background(), rng)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(report.Days)+1)
	for _, day := range report.Days {
		rows = append(rows, mealCountsRow(day.Date.String(), day.MealsSkipped))
	}
	rows = append(rows, mealCountsRow("Total", report.MealsSkippedByType))

	fmt.Fprintln(cli.out, renderTitle(fmt.Sprintf("Food wastage, %s", rng)))
	fmt.Fprintln(cli.out, renderTable([]string{"Date", "Breakfast", "Lunch", "Dinner"}, rows))
	fmt.Fprintf(cli.out, "%d meals skipped, %d saved\n", report.TotalSkipped, report.EstimatedCostSaved)
	return nil
}

func mealCountsRow(label string, counts map[mess.MealType]int) []string {
	row := []string{label}
	for _, mt := range mess.MealTypes {
		row = append(row, fmt.Sprint(counts[mt]))
	}
	return row
}

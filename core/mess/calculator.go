package mess

// ComputeAdjustment charges every day of `rng` in full and refunds each skipped meal once.
// A full-day leave refunds the whole day charge. It is a pure function of its inputs.
func ComputeAdjustment(tariff Tariff, rng DateRange, ledger *Ledger) Adjustment {
	adj := Adjustment{
		UserID: ledger.UserID,
		Range:  rng,
		Days:   make([]DayAdjustment, 0, rng.Len()),
	}

	for _, d := range rng.Days() {
		day := DayAdjustment{Date: d, Charge: tariff.DayCharge(), SkippedMeals: []MealType{}}
		for _, mt := range MealTypes {
			if ledger.Skipped(d, mt) {
				day.Refund += tariff.Price(mt)
				day.SkippedMeals = append(day.SkippedMeals, mt)
			}
		}
		adj.TotalCharges += day.Charge
		adj.TotalRefunds += day.Refund
		adj.Days = append(adj.Days, day)
	}

	adj.NetAmount = adj.TotalCharges - adj.TotalRefunds
	adj.Attendance = ledger.AttendanceSummary(rng)
	return adj
}

// ComputeWastage counts, per day & meal, the users who skipped the meal within `rng`,
// and the cost saved by not cooking those meals.
func ComputeWastage(tariff Tariff, rng DateRange, ledgers []*Ledger) WastageReport {
	report := WastageReport{
		Range:              rng,
		MealsSkippedByType: newMealCounts(),
		Days:               make([]DailyWastage, 0, rng.Len()),
	}

	for _, d := range rng.Days() {
		daily := DailyWastage{Date: d, MealsSkipped: newMealCounts()}
		for _, l := range ledgers {
			for _, mt := range l.SkippedMeals(d) {
				daily.MealsSkipped[mt]++
			}
		}
		for _, mt := range MealTypes {
			n := daily.MealsSkipped[mt]
			report.MealsSkippedByType[mt] += n
			report.TotalSkipped += n
			report.EstimatedCostSaved += int64(n) * tariff.Price(mt)
		}
		report.Days = append(report.Days, daily)
	}
	return report
}

func newMealCounts() map[MealType]int {
	counts := make(map[MealType]int, len(MealTypes))
	for _, mt := range MealTypes {
		counts[mt] = 0
	}
	return counts
}

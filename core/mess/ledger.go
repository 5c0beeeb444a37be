package mess

type mealKey struct {
	date string
	meal MealType
}

// Ledger indexes the meal records of one user for day/meal lookups.
type Ledger struct {
	UserID string

	preferences map[string]MealPreference
	attendance  map[mealKey]AttendanceRecord
	leave       map[mealKey]bool // approved leave only
}

// NewLedger builds the Ledger of `userID` from its records; records of other users are ignored,
// as are leave requests that are not approved.
func NewLedger(userID string, prefs []MealPreference, records []AttendanceRecord, leave []LeaveRequest) *Ledger {
	l := &Ledger{
		UserID:      userID,
		preferences: make(map[string]MealPreference, len(prefs)),
		attendance:  make(map[mealKey]AttendanceRecord, len(records)),
		leave:       make(map[mealKey]bool),
	}
	for _, p := range prefs {
		if p.UserID != userID {
			continue
		}
		p.Normalize()
		l.preferences[p.Date.String()] = p
	}
	for _, r := range records {
		if r.UserID != userID {
			continue
		}
		l.attendance[mealKey{r.Date.String(), r.MealType}] = r
	}
	for _, lr := range leave {
		if lr.UserID != userID || !lr.IsApproved() {
			continue
		}
		l.leave[mealKey{lr.Date.String(), lr.MealType}] = true
	}
	return l
}

// NewLedgers groups records by user and builds one Ledger per user found.
func NewLedgers(prefs []MealPreference, records []AttendanceRecord, leave []LeaveRequest) []*Ledger {
	var order []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	prefsBy := make(map[string][]MealPreference)
	for _, p := range prefs {
		add(p.UserID)
		prefsBy[p.UserID] = append(prefsBy[p.UserID], p)
	}
	recordsBy := make(map[string][]AttendanceRecord)
	for _, r := range records {
		add(r.UserID)
		recordsBy[r.UserID] = append(recordsBy[r.UserID], r)
	}
	leaveBy := make(map[string][]LeaveRequest)
	for _, lr := range leave {
		add(lr.UserID)
		leaveBy[lr.UserID] = append(leaveBy[lr.UserID], lr)
	}

	ledgers := make([]*Ledger, 0, len(order))
	for _, id := range order {
		ledgers = append(ledgers, NewLedger(id, prefsBy[id], recordsBy[id], leaveBy[id]))
	}
	return ledgers
}

// Preference returns the MealPreference of day `d`, if declared.
func (l *Ledger) Preference(d Date) (MealPreference, bool) {
	p, ok := l.preferences[d.String()]
	return p, ok
}

// Attendance returns the AttendanceRecord of meal `mt` on day `d`, if marked.
func (l *Ledger) Attendance(d Date, mt MealType) (AttendanceRecord, bool) {
	r, ok := l.attendance[mealKey{d.String(), mt}]
	return r, ok
}

func (l *Ledger) HasApprovedLeave(d Date, mt MealType) bool {
	return l.leave[mealKey{d.String(), mt}]
}

// IsFullDayLeave reports whether the whole day `d` was declared off.
func (l *Ledger) IsFullDayLeave(d Date) bool {
	p, ok := l.Preference(d)
	return ok && p.FullDayLeave
}

// Skipped reports whether meal `mt` of day `d` counts as not taken: declared off in the
// day's preference or covered by approved leave. Days without a preference count as attended.
func (l *Ledger) Skipped(d Date, mt MealType) bool {
	if l.HasApprovedLeave(d, mt) {
		return true
	}
	p, ok := l.Preference(d)
	return ok && !p.Wants(mt)
}

// SkippedMeals lists the meals of day `d` that count as not taken.
func (l *Ledger) SkippedMeals(d Date) []MealType {
	var skipped []MealType
	for _, mt := range MealTypes {
		if l.Skipped(d, mt) {
			skipped = append(skipped, mt)
		}
	}
	return skipped
}

// AttendanceSummary counts the marked & attended meals within `rng`.
func (l *Ledger) AttendanceSummary(rng DateRange) AttendanceSummary {
	var s AttendanceSummary
	for key, r := range l.attendance {
		d, err := ParseDate(key.date)
		if err != nil || !rng.Contains(d) {
			continue
		}
		s.Marked++
		if r.Attended {
			s.Attended++
		}
	}
	if s.Marked > 0 {
		s.Percentage = float64(s.Attended) * 100 / float64(s.Marked)
	}
	return s
}

package model

// Slot is one fixed period of the daily schedule during which a key may be
// checked out.  The schedule is read-only reference data; it is not
// editable through the API.
type Slot struct {
	Name  string `json:"name"`  // display name, e.g. "第一節"
	Start string `json:"start"` // start of the period, HH:MM
	End   string `json:"end"`   // end of the period, HH:MM
}

// Schedule is the fixed seven-period daily timetable shared by all keys.
var Schedule = []Slot{
	{Name: "第一節", Start: "08:10", End: "09:00"},
	{Name: "第二節", Start: "09:10", End: "10:00"},
	{Name: "第三節", Start: "10:10", End: "11:00"},
	{Name: "第四節", Start: "11:10", End: "12:00"},
	{Name: "第五節", Start: "13:00", End: "13:50"},
	{Name: "第六節", Start: "14:00", End: "14:50"},
	{Name: "第七節", Start: "15:10", End: "16:00"},
}

// slotIndex maps slot names to their position in the schedule.
var slotIndex = func() map[string]int {
	m := make(map[string]int, len(Schedule))
	for i, s := range Schedule {
		m[s.Name] = i
	}
	return m
}()

// KnownSlot reports whether name is one of the scheduled periods.
func KnownSlot(name string) bool {
	_, ok := slotIndex[name]
	return ok
}

// NormalizeSlots deduplicates the requested slot names and returns them in
// schedule order.  Unknown names are reported in the second return value;
// the caller decides whether that is an error.
func NormalizeSlots(requested []string) (valid []string, unknown []string) {
	seen := make(map[string]bool, len(requested))
	for _, s := range requested {
		if seen[s] {
			continue
		}
		seen[s] = true
		if KnownSlot(s) {
			valid = append(valid, s)
		} else {
			unknown = append(unknown, s)
		}
	}
	sortSlots(valid)
	return valid, unknown
}

// Overlap returns the slots present in both sets, in schedule order.
func Overlap(requested, booked []string) []string {
	if len(requested) == 0 || len(booked) == 0 {
		return nil
	}
	held := make(map[string]bool, len(booked))
	for _, s := range booked {
		held[s] = true
	}
	var out []string
	for _, s := range requested {
		if held[s] {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out
}

// sortSlots orders slot names by their schedule position.  Names outside
// the schedule sort last in their incoming order.
func sortSlots(slots []string) {
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && slotRank(slots[j]) < slotRank(slots[j-1]); j-- {
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
}

func slotRank(name string) int {
	if i, ok := slotIndex[name]; ok {
		return i
	}
	return len(Schedule)
}

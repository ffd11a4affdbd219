package schedule

// SlotCount maps a slot start time to the number of active reservations
// holding it.
type SlotCount map[string]int

// SlotAvailability is one generated slot annotated with its booked count.
type SlotAvailability struct {
	Slot       string `json:"slot"`
	Booked     int    `json:"booked"`
	AtCapacity bool   `json:"at_capacity"`
}

// Tally counts occurrences of each booked slot. Callers pass the slot values
// of the day's active reservations of type "reservation".
func Tally(bookedSlots []string) SlotCount {
	counts := make(SlotCount, len(bookedSlots))
	for _, s := range bookedSlots {
		counts[s]++
	}
	return counts
}

// Annotate joins the generated slot sequence with the day's booked counts.
// This is a read-time projection for display; the write-time capacity check
// happens inside the booking critical section.
func Annotate(slots []string, counts SlotCount, capacity int) []SlotAvailability {
	out := make([]SlotAvailability, 0, len(slots))
	for _, s := range slots {
		n := counts[s]
		out = append(out, SlotAvailability{
			Slot:       s,
			Booked:     n,
			AtCapacity: n >= capacity,
		})
	}
	return out
}

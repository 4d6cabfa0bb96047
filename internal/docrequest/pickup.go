package docrequest

import "time"

const pickupBusinessDays = 3

// PickupDate returns the date pickupBusinessDays working days after from,
// skipping weekends. The time of day is dropped.
func PickupDate(from time.Time) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for added := 0; added < pickupBusinessDays; {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return d
}

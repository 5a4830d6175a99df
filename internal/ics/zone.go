package ics

import (
	ical "github.com/arran4/golang-ical"
)

// Zone describes the single civil timezone written into every document. The
// DST rules are fixed: daylight starts on the second Sunday of March and
// standard time resumes on the first Sunday of November, both at 02:00.
type Zone struct {
	TZID           string
	StandardName   string
	DaylightName   string
	StandardOffset string // e.g. "-0600"
	DaylightOffset string // e.g. "-0500"
}

var (
	Eastern  = Zone{TZID: "America/New_York", StandardName: "EST", DaylightName: "EDT", StandardOffset: "-0500", DaylightOffset: "-0400"}
	Central  = Zone{TZID: "America/Chicago", StandardName: "CST", DaylightName: "CDT", StandardOffset: "-0600", DaylightOffset: "-0500"}
	Mountain = Zone{TZID: "America/Denver", StandardName: "MST", DaylightName: "MDT", StandardOffset: "-0700", DaylightOffset: "-0600"}
	Pacific  = Zone{TZID: "America/Los_Angeles", StandardName: "PST", DaylightName: "PDT", StandardOffset: "-0800", DaylightOffset: "-0700"}
)

// LookupZone returns the zone for an IANA name among the supported US zones.
func LookupZone(tzid string) (Zone, bool) {
	for _, z := range []Zone{Eastern, Central, Mountain, Pacific} {
		if z.TZID == tzid {
			return z, true
		}
	}
	return Zone{}, false
}

// component builds the VTIMEZONE block.
func (z Zone) component() *ical.VTimezone {
	tz := &ical.VTimezone{}
	tz.SetProperty(ical.ComponentProperty(ical.PropertyTzid), z.TZID)
	tz.SetProperty(ical.ComponentProperty("X-LIC-LOCATION"), z.TZID)

	daylight := &ical.Daylight{}
	daylight.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), z.StandardOffset)
	daylight.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), z.DaylightOffset)
	daylight.SetProperty(ical.ComponentProperty(ical.PropertyTzname), z.DaylightName)
	daylight.SetProperty(ical.ComponentPropertyDtStart, "19700308T020000")
	daylight.SetProperty(ical.ComponentPropertyRrule, "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU")

	standard := &ical.Standard{}
	standard.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), z.DaylightOffset)
	standard.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), z.StandardOffset)
	standard.SetProperty(ical.ComponentProperty(ical.PropertyTzname), z.StandardName)
	standard.SetProperty(ical.ComponentPropertyDtStart, "19701101T020000")
	standard.SetProperty(ical.ComponentPropertyRrule, "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU")

	tz.Components = append(tz.Components, daylight, standard)
	return tz
}

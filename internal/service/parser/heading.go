package parser

import (
	"regexp"
	"strings"

	"github.com/target/scriptcheck/internal/domain/model"
)

// Heading is the parsed form of a scene heading (slug line).
type Heading struct {
	LocationType model.LocationType
	Location     string
	TimeOfDay    model.TimeOfDay
}

var timeOfDay = map[string]model.TimeOfDay{
	"DAY":           model.TimeOfDayDay,
	"NIGHT":         model.TimeOfDayNight,
	"DAWN":          model.TimeOfDayDawn,
	"DUSK":          model.TimeOfDayDusk,
	"MORNING":       model.TimeOfDayMorning,
	"EVENING":       model.TimeOfDayEvening,
	"CONTINUOUS":    model.TimeOfDayContinuous,
	"CONT":          model.TimeOfDayContinuous,
	"LATER":         model.TimeOfDayContinuous,
	"SAME":          model.TimeOfDayContinuous,
	"MOMENTS LATER": model.TimeOfDayContinuous,

	"TAG":             model.TimeOfDayDay,
	"NACHT":           model.TimeOfDayNight,
	"MORGEN":          model.TimeOfDayMorning,
	"MORGENS":         model.TimeOfDayMorning,
	"ABEND":           model.TimeOfDayEvening,
	"ABENDS":          model.TimeOfDayEvening,
	"DÄMMERUNG":       model.TimeOfDayDusk,
	"DAEMMERUNG":      model.TimeOfDayDusk,
	"MORGENDÄMMERUNG": model.TimeOfDayDawn,
	"FORTLAUFEND":     model.TimeOfDayContinuous,
	"SPÄTER":          model.TimeOfDayContinuous,
	"SPAETER":         model.TimeOfDayContinuous,
}

// Longer prefixes first.
var locationPrefixes = []struct {
	prefix string
	lt     model.LocationType
}{
	{"INT./EXT.", model.LocationIntExt},
	{"INT/EXT.", model.LocationIntExt},
	{"I./E.", model.LocationIntExt},
	{"I/E.", model.LocationIntExt},
	{"EXT./INT.", model.LocationIntExt},
	{"EXT/INT.", model.LocationIntExt},
	{"INNEN/AUSSEN", model.LocationIntExt},
	{"AUSSEN/INNEN", model.LocationIntExt},
	{"INT.", model.LocationInt},
	{"INNEN", model.LocationInt},
	{"I.", model.LocationInt},
	{"EXT.", model.LocationExt},
	{"AUSSEN", model.LocationExt},
	{"E.", model.LocationExt},
}

var headingSeparator = regexp.MustCompile(`\s*[-–—]\s*`)

// ParseHeading extracts location type, location and time of day from a
// scene heading such as "INT. BÜRO - TAG". Parts it cannot recognise are
// UNKNOWN; the location falls back to the whole heading.
func ParseHeading(heading string) Heading {
	text := strings.TrimSpace(heading)
	upper := strings.ToUpper(text)

	h := Heading{LocationType: model.LocationUnknown, TimeOfDay: model.TimeOfDayUnknown}
	remainder := text
	for _, p := range locationPrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			h.LocationType = p.lt
			remainder = strings.TrimSpace(text[len(p.prefix):])
			break
		}
	}

	location := remainder
	if parts := headingSeparator.Split(remainder, -1); len(parts) >= 2 {
		location = strings.Join(parts[:len(parts)-1], " - ")
		if tod, ok := timeOfDay[strings.ToUpper(strings.TrimSpace(parts[len(parts)-1]))]; ok {
			h.TimeOfDay = tod
		}
	}

	h.Location = strings.Trim(strings.TrimSpace(location), ". ")
	if h.Location == "" {
		h.Location = text
	}
	return h
}

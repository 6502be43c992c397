package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/scriptcheck/internal/domain/model"
)

func TestParseHeading(t *testing.T) {
	tests := []struct {
		heading  string
		lt       model.LocationType
		location string
		tod      model.TimeOfDay
	}{
		{"INT. OFFICE - DAY", model.LocationInt, "OFFICE", model.TimeOfDayDay},
		{"EXT. FOREST - NIGHT", model.LocationExt, "FOREST", model.TimeOfDayNight},
		{"INT./EXT. CAR - CONTINUOUS", model.LocationIntExt, "CAR", model.TimeOfDayContinuous},
		{"EXT. BEACH - DAWN", model.LocationExt, "BEACH", model.TimeOfDayDawn},
		{"INT. KITCHEN - EVENING", model.LocationInt, "KITCHEN", model.TimeOfDayEvening},
		{"EXT. FARM – MORNING", model.LocationExt, "FARM", model.TimeOfDayMorning},
		{"INNEN. BÜRO - TAG", model.LocationInt, "BÜRO", model.TimeOfDayDay},
		{"AUSSEN. WALD - NACHT", model.LocationExt, "WALD", model.TimeOfDayNight},
		{"INNEN/AUSSEN. AUTO - DAEMMERUNG", model.LocationIntExt, "AUTO", model.TimeOfDayDusk},
		{"I/E. BUS — MOMENTS LATER", model.LocationIntExt, "BUS", model.TimeOfDayContinuous},
		{"int. lab - night", model.LocationInt, "lab", model.TimeOfDayNight},
		{"INT. ROOM - SOMETIMEWEIRD", model.LocationInt, "ROOM", model.TimeOfDayUnknown},
		{"INT. ROOM", model.LocationInt, "ROOM", model.TimeOfDayUnknown},
		{"EXT. KEVIN'S HOUSE - DAY", model.LocationExt, "KEVIN'S HOUSE", model.TimeOfDayDay},
		{"INT. HOSPITAL - WARD 3 - NIGHT", model.LocationInt, "HOSPITAL - WARD 3", model.TimeOfDayNight},
		{"ROOFTOP - DAY", model.LocationUnknown, "ROOFTOP", model.TimeOfDayDay},
		{"INT.", model.LocationInt, "INT.", model.TimeOfDayUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			h := ParseHeading(tt.heading)
			assert.Equal(t, tt.lt, h.LocationType)
			assert.Equal(t, tt.location, h.Location)
			assert.Equal(t, tt.tod, h.TimeOfDay)
		})
	}
}

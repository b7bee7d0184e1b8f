package dataset

import (
	"fmt"

	"schoolprep/domain/incident"
)

// rawHeaders mirrors the source export, including raw names that cleaning renames
var rawHeaders = []string{
	"uid", "nces_school_id", "school_name", "nces_district_id", "district_name",
	"date", "school_year", "year", "time", "day_of_week", "city", "state",
	"school_type", "enrollment", "killed", "injured", "casualties", "shooting_type",
	"age_shooter1", "gender_shooter1", "race_ethnicity_shooter1",
	"white", "black", "hispanic", "asian", "american_indian_alaska_native",
	"hawaiian_native_pacific_islander", "two_or_more", "resource_officer", "weapon",
	"lat", "long", "staffing", "low_grade", "high_grade", "lunch", "county",
	"state_fips", "county_fips", "ulocale",
}

// rawRow returns a complete, valid source row; overrides replace cells
func rawRow(i int, overrides map[string]string) incident.RawRow {
	row := incident.RawRow{
		"uid":                              fmt.Sprint(i + 1),
		"nces_school_id":                   fmt.Sprintf("0%07d", i),
		"school_name":                      fmt.Sprintf("School %d", i),
		"date":                             "3/7/2019",
		"school_year":                      "2018-2019",
		"year":                             "2019",
		"time":                             "10:15 AM",
		"day_of_week":                      "Thursday",
		"city":                             "Springfield",
		"state":                            "Illinois",
		"school_type":                      "Public",
		"enrollment":                       fmt.Sprint(100 + 10*i),
		"killed":                           "0",
		"injured":                          "1",
		"casualties":                       "1",
		"shooting_type":                    "targeted",
		"white":                            "0.5",
		"black":                            "0.2",
		"hispanic":                         "0.2",
		"asian":                            "0.05",
		"american_indian_alaska_native":    "0",
		"hawaiian_native_pacific_islander": "0",
		"two_or_more":                      "0.05",
		"resource_officer":                 "1",
		"weapon":                           "handgun",
		"lat":                              "39.78",
		"long":                             "-89.65",
		"staffing":                         "35.5",
		"low_grade":                        "9",
		"high_grade":                       "12",
		"lunch":                            "120",
		"county":                           "Sangamon County",
		"state_fips":                       "17",
		"county_fips":                      "17167",
		"ulocale":                          "13",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

// rawTable builds n valid source rows
func rawTable(n int) *incident.RawTable {
	rows := make([]incident.RawRow, n)
	for i := range rows {
		rows[i] = rawRow(i, nil)
	}
	return &incident.RawTable{Headers: append([]string(nil), rawHeaders...), Rows: rows}
}

// withoutHeader drops one column from a raw table
func withoutHeader(raw *incident.RawTable, header string) *incident.RawTable {
	headers := make([]string, 0, len(raw.Headers))
	for _, h := range raw.Headers {
		if h != header {
			headers = append(headers, h)
		}
	}
	return &incident.RawTable{Headers: headers, Rows: raw.Rows}
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// regionNames maps two-digit state FIPS codes to state names.
var regionNames = map[string]string{
	"01": "Alabama",
	"02": "Alaska",
	"04": "Arizona",
	"05": "Arkansas",
	"06": "California",
	"08": "Colorado",
	"09": "Connecticut",
	"10": "Delaware",
	"11": "District of Columbia",
	"12": "Florida",
	"13": "Georgia",
	"15": "Hawaii",
	"16": "Idaho",
	"17": "Illinois",
	"18": "Indiana",
	"19": "Iowa",
	"20": "Kansas",
	"21": "Kentucky",
	"22": "Louisiana",
	"23": "Maine",
	"24": "Maryland",
	"25": "Massachusetts",
	"26": "Michigan",
	"27": "Minnesota",
	"28": "Mississippi",
	"29": "Missouri",
	"30": "Montana",
	"31": "Nebraska",
	"32": "Nevada",
	"33": "New Hampshire",
	"34": "New Jersey",
	"35": "New Mexico",
	"36": "New York",
	"37": "North Carolina",
	"38": "North Dakota",
	"39": "Ohio",
	"40": "Oklahoma",
	"41": "Oregon",
	"42": "Pennsylvania",
	"44": "Rhode Island",
	"45": "South Carolina",
	"46": "South Dakota",
	"47": "Tennessee",
	"48": "Texas",
	"49": "Utah",
	"50": "Vermont",
	"51": "Virginia",
	"53": "Washington",
	"54": "West Virginia",
	"55": "Wisconsin",
	"56": "Wyoming",
}

// RegionName returns the state name for a FIPS code, or "" when the code is
// not in the table.
func RegionName(code string) string {
	return regionNames[normalizeRegionCode(code)]
}

// normalizeRegionCode zero-pads numeric codes to two digits ("1" -> "01").
// Non-numeric input is returned trimmed.
func normalizeRegionCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 {
		return code
	}
	return fmt.Sprintf("%02d", n)
}

package usecase

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"adsync/internal/core/domain"
)

// The remote platform targets devices with a small predicate language over
// $device fields. These builders compose the expressions the flight's
// CustomTargeting attribute carries.

func joinQueries(operator string, parts []string) string {
	return strings.Join(parts, " "+strings.ToUpper(operator)+" ")
}

func splitVersion(v string) (major, minor int) {
	head, tail, _ := strings.Cut(v, ".")
	major, _ = strconv.Atoi(head)
	minor, _ = strconv.Atoi(tail)
	return major, minor
}

// versionQuery builds the OS-version clause for a bounded or half-open
// version range. The shape depends on how the bounds relate: equal bounds
// collapse to an exact match, bounds sharing a major version intersect two
// minor comparisons, and wider ranges union a whole-major span with the
// boundary comparisons.
func versionQuery(r domain.VersionRange) string {
	lowerMajor, lowerMinor := splitVersion(r.Min)

	lower := fmt.Sprintf(
		"($device.osVersion.major = %d AND $device.osVersion.minor >= %d)",
		lowerMajor, lowerMinor)

	if r.Max == "" {
		if lowerMinor == 0 {
			return fmt.Sprintf("($device.osVersion.major >= %d)", lowerMajor)
		}
		majorRange := fmt.Sprintf("($device.osVersion.major >= %d)", lowerMajor+1)
		return joinQueries("or", []string{majorRange, lower})
	}

	upperMajor, upperMinor := splitVersion(r.Max)
	upper := fmt.Sprintf(
		"($device.osVersion.major = %d AND $device.osVersion.minor <= %d)",
		upperMajor, upperMinor)

	switch {
	case r.Min == r.Max:
		return fmt.Sprintf(
			"($device.osVersion.major = %d AND $device.osVersion.minor = %d)",
			lowerMajor, lowerMinor)
	case lowerMajor == upperMajor:
		return joinQueries("and", []string{lower, upper})
	case upperMajor-lowerMajor <= 1 && lowerMajor-upperMajor <= 1:
		return joinQueries("or", []string{lower, upper})
	case lowerMinor == 0:
		majorRange := fmt.Sprintf(
			"($device.osVersion.major >= %d AND $device.osVersion.major <= %d)",
			lowerMajor, upperMajor-1)
		return joinQueries("or", []string{majorRange, upper})
	default:
		majorRange := fmt.Sprintf(
			"($device.osVersion.major >= %d AND $device.osVersion.major <= %d)",
			lowerMajor+1, upperMajor-1)
		return joinQueries("or", []string{majorRange, lower, upper})
	}
}

// mobileTargetingQuery builds the predicate for one mobile OS. Device and
// version constraints are added only when both are present; otherwise the
// whole OS is targeted.
func mobileTargetingQuery(os, lookup string, devices []string, versions *domain.VersionRange) string {
	queries := []string{fmt.Sprintf("$device.os = %q", os)}

	if len(devices) > 0 && versions != nil {
		deviceQueries := make([]string, len(devices))
		for i, device := range devices {
			deviceQueries[i] = fmt.Sprintf("$device.%s CONTAINS %q", lookup, device)
		}
		queries = append(queries,
			"("+joinQueries("or", deviceQueries)+")",
			"("+versionQuery(*versions)+")",
		)
	}

	return "(" + joinQueries("and", queries) + ")"
}

// customTargeting builds the flight's CustomTargeting expression from the
// booking's mobile constraints. Bookings without mobile targeting get an
// empty expression; bookings on every platform also admit desktop devices.
func customTargeting(t domain.Targeting) string {
	if len(t.MobileOS) == 0 {
		return ""
	}

	var queries []string
	if slices.Contains(t.MobileOS, "iOS") {
		queries = append(queries,
			mobileTargetingQuery("iOS", "modelName", t.IOSDevices, t.IOSVersions))
	}
	if slices.Contains(t.MobileOS, "Android") {
		queries = append(queries,
			mobileTargetingQuery("Android", "formFactor", t.AndroidDevices, t.AndroidVersions))
	}
	if t.Platform == domain.PlatformAll {
		queries = append(queries, `($device.formFactor CONTAINS "desktop")`)
	}
	return joinQueries("or", queries)
}

// sanitizeText strips everything but letters, digits and whitespace from
// names that end up in remote object titles.
func sanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

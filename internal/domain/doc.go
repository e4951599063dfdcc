// Package domain models the JHU CSSE COVID-19 time series and the
// transforms that turn them into a unified daily table.
//
// # Data Source
//
// The Johns Hopkins CSSE repository publishes four CSV files under
// csse_covid_19_data/csse_covid_19_time_series/:
//
//	time_series_covid19_confirmed_global.csv
//	time_series_covid19_deaths_global.csv
//	time_series_covid19_confirmed_US.csv
//	time_series_covid19_deaths_US.csv
//
// Every file is "wide": identifying columns first, then one column per
// calendar day holding the cumulative count reported on that day.
//
// # Schema Families
//
// Global files:
//
//	Province/State, Country/Region, Lat, Long, 1/22/20, 1/23/20, ...
//
// US files (one row per county):
//
//	UID, iso2, iso3, code3, FIPS, Admin2, Province_State, Country_Region,
//	Lat, Long_, Combined_Key, [Population], 1/22/20, ...
//
// Population appears only in the confirmed file. Identifying columns are
// dropped and the rest renamed to the global names before reshaping.
//
// Date headers use M/D/YY ("1/22/20"). ISO dates ("2020-01-22") are also
// accepted so local mirrors can be regenerated by other tools.
//
// # Unified Table
//
// Global rows are summed per (country, date) and labelled with the
// aggregate sentinel [AllProvinces]. China is the one country whose
// province rows are kept next to its total. US rows are summed per
// (state, date) without a sentinel; the US total comes from the global
// files. Confirmed and death tables are inner-joined on
// (country, province, date) so a day missing from either side is dropped.
//
// # Missing Values
//
// Empty or malformed count cells become missing values. Sums treat
// missing as zero; differencing propagates missing. Coordinates that fail
// to parse are excluded from medians.
package domain

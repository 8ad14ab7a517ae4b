// Package domain models raw WRF simulation output and the post-processing
// work derived from it.
//
// # Raw Output Layout
//
// A simulation is split into multi-year chunks. Each chunk writes into its own
// directory under the raw output root, named by the chunk's first year:
//
//	<BASEDIR>/1977_chunk/
//	<BASEDIR>/1987_chunk/
//
// Inside a chunk directory every output stream writes one file per day, named
// by a stream prefix, the WRF domain id and a fixed-width timestamp:
//
//	wrfout_d01_1985-03-01_00:00:00        primary (counted)
//	wrfout_hour_d01_1985-03-01_00:00:00   hourly (counted)
//	wrfout_pres_d01_1985-03-01_00:00:00   pressure levels (counted)
//	wrfout_zlev_d01_1985-03-01_00:00:00   height levels (counted)
//	wrfout_afwa_d01_1985-03-01_00:00:00   derived diagnostics (counted)
//	wrfout_5day_d01_1985-03-01_00:00:00   five-day means (never counted)
//	wrfrst_d01_1985-03-01_00:00:00        restarts (never counted)
//
// A trailing ".nc" is tolerated. Names that do not fit a template, or that
// carry an impossible date, are ignored rather than reported: the scanner runs
// unattended and stray files are treated as absent data.
//
// # Year Obligations
//
// A complete year has one file per day per counted stream: 365 files, or 366
// in a leap year (proleptic Gregorian). Two independent rules reduce that:
//
//	lead_in:    chunk-keyed. A chunk starts mid-year (typically June), so
//	            years before the ORDINAL_START_YEAR-th year of the chunk are
//	            not counted. With start 2010 and ordinal 2 the first counted
//	            year is 2011.
//	span_final: span-keyed. The last year of the whole simulation only holds
//	            January 1 and is not counted.
//
// A year is missing when any counted stream falls short for it. A chunk is
// ready when no counted year is missing.
//
// # Aggregation Ranges
//
// Post-processed yearly files are merged into coarser products over fixed
// windows anchored on years ending in 1: ten years for monthly output, five
// for daily output, one for sub-daily output. Windows are clipped to the
// available years, so 2011-2025 yields 2011-2020 and 2021-2025 for monthly
// output.
package domain

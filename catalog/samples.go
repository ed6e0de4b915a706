package catalog

import "time"

// Samples returns the compiled-in datasets shown even before anything has
// been uploaded. They are not stored anywhere; the IDs just have to stay
// out of the uploads/ namespace.
func Samples() []Record {
	return []Record{
		{
			ID:          "samples/streamflow-daily.nc",
			Name:        "streamflow-daily.nc",
			Description: "Daily streamflow observations for a handful of demo gauges.",
			ContentType: "application/x-netcdf",
			Size:        1 << 20,
			UpdateTime:  time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC),
			StoragePath: "gs://cloudbank-samples/samples/streamflow-daily.nc",
			Source:      SourceSample,
		},
		{
			ID:          "samples/precip-hourly.nc",
			Name:        "precip-hourly.nc",
			Description: "Hourly gridded precipitation, one month, coarse resolution.",
			ContentType: "application/x-netcdf",
			Size:        3 << 20,
			UpdateTime:  time.Date(2024, time.January, 17, 9, 30, 0, 0, time.UTC),
			StoragePath: "gs://cloudbank-samples/samples/precip-hourly.nc",
			Source:      SourceSample,
		},
	}
}

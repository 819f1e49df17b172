// Package darksky provides a Go client library for the DarkSky forecast API.
//
// The package is split the way a request flows: Options collect the optional
// query parameters, FormatURL turns coordinates and options into a request
// URL, a Sender performs the HTTP GET, and Decode turns the JSON body into a
// Forecast.
//
// Basic Usage:
//
//	client := darksky.NewClient("YourApp/1.0 (your-email@example.com)")
//
//	forecast, err := client.GetForecastWithOptions(ctx, token, 37.8267, -122.423,
//		func(o darksky.Options) darksky.Options {
//			return o.Exclude(darksky.BlockMinutely, darksky.BlockFlags).
//				Language(darksky.German).
//				Unit(darksky.UnitSI)
//		})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if forecast.Currently != nil && forecast.Currently.Temperature != nil {
//		fmt.Printf("Now: %.1f°C\n", *forecast.Currently.Temperature)
//	}
//
// Time Machine requests take the point in time as a string, built with the
// helpers of the utils package:
//
//	at := utils.UnixString(time.Now().Add(-24 * time.Hour))
//	forecast, err := client.GetForecastTimeMachine(ctx, token, lat, long, at, nil)
//
// Errors:
//
// Every failure is an *Error whose Kind tells where it happened. Compare with
// the sentinels using errors.Is, and reach the details with errors.As:
//
//	var apiErr *darksky.APIError
//	switch {
//	case errors.As(err, &apiErr):
//		// non-2xx response, apiErr.StatusCode
//	case errors.Is(err, darksky.ErrDecode):
//		// body did not match the forecast schema
//	}
//
// The library never retries a request.
//
// For more information about the API, visit: https://darksky.net/dev/docs
package darksky

// Package circare is a Go client for the Arch-Circare search API: image
// search by upload, URL or corpus id, project image listing, relevance
// feedback and the 2-D latent projection.
//
//	client, _ := circare.New("http://127.0.0.1:8000",
//	    circare.WithToken(os.Getenv("STUDY_TOKEN")),
//	    circare.WithRateLimit(rate.Every(100*time.Millisecond), 1),
//	)
//	res, _ := client.SearchURL(ctx, "https://example.org/facade.jpg", circare.SearchParams{
//	    TopK:    12,
//	    Weights: &circare.Weights{Visual: 0.7, Spatial: 0.2, Attr: 0.1},
//	    Rerank:  true,
//	})
//	for _, r := range res.Results {
//	    fmt.Println(r.Rank, r.ImageID, r.Distance)
//	}
//
// GET requests are retried with backoff on network errors and 5xx responses.
// POST requests (uploads, feedback) are sent exactly once.
package circare

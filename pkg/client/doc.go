// Package client is a Go client for the celebtwin HTTP API.
//
//	c, err := client.New("http://localhost:5000", client.WithAPIKey(key))
//	img, err := client.OpenImage("me.jpg")
//	res, err := c.Search(ctx, img)
//
// Failures reported by the server are returned as *APIError and match
// ErrValidation, ErrUnauthorized, ErrUploadTooLarge or ErrServer with errors.Is.
package client

package plaid

import (
	"fmt"
	"net/http"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"
)

const apiVersion = "2020-09-14"

// NewPlaidClient builds the SDK client for the given environment.
// env is "sandbox" or "production".
func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)
	configuration.AddDefaultHeader("Plaid-Version", apiVersion)
	configuration.HTTPClient = &http.Client{Timeout: 30 * time.Second}

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid plaid environment: %q", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// newPlaidClientAt points the SDK at an arbitrary base URL.
func newPlaidClientAt(baseURL string, httpClient *http.Client) *plaid.APIClient {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("Plaid-Version", apiVersion)
	configuration.UseEnvironment(plaid.Environment(baseURL))
	if httpClient != nil {
		configuration.HTTPClient = httpClient
	}
	return plaid.NewAPIClient(configuration)
}

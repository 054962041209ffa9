/*
Package identitysdk is the client for the AskBar identity backend.

A Client plays two roles for the session core in internal/identity: it is the
identity provider (sign-up, password sign-in, sign-out, OAuth redirect URLs,
session restore and refresh) and it is the profile store (profile rows keyed
by identity id).

The current session is persisted as JSON in a Storage under
"<StorageKeyPrefix>token" so a restarted process can restore it:

	client := identitysdk.NewClient("http://localhost:8080", kv)

	sess, err := client.GetSession(ctx) // nil, nil when signed out
	sess, err = client.SignInWithPassword(ctx, "ada@example.com", "hunter2hunter2")

Auth changes are published to subscribers as AuthEvent values:

	sub := client.Subscribe()
	defer sub.Close()
	for ev := range sub.Events() {
		switch ev.Kind {
		case identitysdk.EventSignedIn:
		case identitysdk.EventTokenRefreshed:
		}
	}

GetSession refreshes the access token when it is within RefreshMargin of
expiry and publishes TOKEN_REFRESHED; StartAutoRefresh does the same on a
timer. A refresh token the backend no longer accepts clears the stored
session and publishes SIGNED_OUT.

Errors returned by the backend are *APIError values carrying the
{"error","error_description"} body.
*/
package identitysdk

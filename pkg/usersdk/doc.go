/*
Package usersdk provides a client SDK for the userspace account service, plus
the wire types the service writes.

# Client vs Session

The package is organized around two types:

  - Client: unauthenticated operations (register, login, email confirmation,
    password recovery, availability, health and keys)
  - Session: operations on the logged-in account, carrying its identity token

	client := usersdk.NewClient("https://accounts.example.com")

	_, err := client.Register(ctx, usersdk.RegisterRequest{
		Email:           "ada@example.com",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
		Extras:          map[string]any{"first_name": "Ada"},
	})

	session, err := client.Login(ctx, "ada@example.com", "correct horse")
	me, err := session.Me(ctx)

Identity tokens are long lived and cannot be refreshed; log in again once a
call fails with CodeSessionInvalid. UpdateProfile swaps the session token for
the fresh one the service returns.

# Notifications

Every response body carries a "notifications" list of {type, message} pairs
meant for end users. Errors additionally carry a machine readable "code":

	_, err := client.Login(ctx, "ada@example.com", "wrong")
	if usersdk.IsCode(err, usersdk.CodeWrongPassword) {
		// ask again
	}

# Extras

Caller-defined profile fields are flattened next to the core account fields in
JSON. User.Extras holds every field that is not id, email, username or
verified.
*/
package usersdk

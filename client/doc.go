// Package client assembles the session manager, branch context, and request
// pipeline into a single application-root object.
//
// The facade owns the construction and teardown boundary the individual
// pieces expect: it restores persisted credentials, seeds the branch context
// from the restored or freshly logged-in user, registers the branch-clearing
// logout hook, and installs the pipeline transport on its HTTP client.
//
//	store := file.New(filepath.Join(cacheDir, "credentials.json"))
//	c, err := client.NewFromEnv(ctx, store, client.Option{
//		Navigate: router.Navigate,
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if _, err := c.Login(ctx, session.Credentials{Login: login, Password: password}); err != nil {
//		// show inline message; session state is untouched
//	}
//
//	var patients []Patient
//	err = c.Get(ctx, "/api/patients", &patients)
//
// The JSON helpers map 401 to ErrUnauthorized (the pipeline has already
// cleared the session by then) and 403 to ErrForbidden, which carries no
// session side effects.
package client

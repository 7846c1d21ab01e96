/*
Package backend implements the REST API of the plant parenthood planner

The backend translates HTTP requests into planner operations. Protected routes
require a bearer token, "Authorization: Bearer <token>", which is obtained from
/register or /login and is valid for seven days.

Routes

	POST   /register                      public, rate limited
	POST   /login                         public, rate limited
	POST   /logout                        authenticated
	GET    /check-auth                    authenticated
	GET    /users                         public
	GET    /users/{user_id}               public
	GET    /users/{user_id}/plants        the user only
	GET    /users/{user_id}/dashboard     the user only
	GET    /users/{user_id}/care_events   the user only
	GET    /dashboard                     authenticated
	GET    /species                       public
	POST   /species                       public
	GET    /species/{species_id}          public
	GET    /plants                        authenticated
	POST   /plants                        authenticated
	GET    /plants/{plant_id}             owners
	DELETE /plants/{plant_id}             owners
	GET    /plants/{plant_id}/care_events owners
	POST   /plants/{plant_id}/care_events authenticated, for themselves
	GET    /care_events/{care_event_id}   author or plant owners
	GET    /version                       public
	GET    /metrics                       public

Errors

All errors are returned as

	{"error": "plant_not_found", "message": "plant not found"}

with status 400 for validation errors, 401 for missing or invalid tokens and wrong
credentials, 403 if the caller is not permitted, 404 for unknown resources, 409 for
duplicates and 429 if a client logs in too often.

CORS

Cross-origin requests are only answered for origins in the allow-list. Requests from
other origins are rejected with 403 "cors_forbidden".
*/
package backend

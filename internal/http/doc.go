// Package http provides the HTTP handlers and middleware of the mentorbook API.
//
// Public endpoints:
//   - POST /login: body {"email","password"}. Response {"token","expires_at","user"};
//     the token is also set as the `session_token` cookie.
//   - POST /users: registers a mentor or mentee. Body {"email","display_name","role","bio","password"}.
//
// Every other endpoint requires a token in the `Authorization: Bearer` header or
// the `session_token` cookie:
//   - POST /logout revokes the current token.
//   - GET /mentors, GET /users/{id}, GET /users/{id}/feedback.
//   - GET /mentors/{id}/availability/rules, POST /availability/rules,
//     DELETE /availability/rules/{id}.
//   - GET /mentors/{id}/availability/month?year=&month=,
//     GET /mentors/{id}/availability/date?date=.
//   - POST /sessions, GET /sessions?status=&role=, GET /sessions/{id},
//     POST /sessions/{id}/transitions with {"action":"approve|reject|complete|cancel"}.
//   - GET /sessions/{id}/feedback/eligibility, POST /sessions/{id}/feedback.
//   - GET /activities?limit=.
//   - GET /sessions/calendar.ics, GET /sessions/history.xlsx.
//
// Errors are returned as {"error_code","message","errors"} where error_code is
// the application error kind and errors carries field level messages.
package http

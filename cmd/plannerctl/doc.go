// Command plannerctl is the operator CLI for the planner API.
//
// It runs the standalone progress listener, inspects and triggers
// recruitments, lists jobs and their progress history, and follows a job
// live over the server's websocket.
//
//	plannerctl listen-progress --verbose
//	plannerctl evaluate recruitment:abc --trigger
//	plannerctl jobs list --status running
//	plannerctl progress job:xyz
//	plannerctl watch job:xyz --server http://localhost:8080
package main

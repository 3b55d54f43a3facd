// Package helpers provides test utility functions for the planner API.
//
// # Request Helpers
//
//	req := helpers.NewRequest(t, http.MethodPost, "/v1/jobs").
//	    WithBody(payload).
//	    Build()
//
// WithRawBody sends bytes unchanged for malformed-body cases.
//
// # Response Assertions
//
//	helpers.AssertStatus(t, rec, http.StatusCreated)
//	helpers.AssertProblemDetails(t, rec, http.StatusNotFound, model.ErrCodeNotFound)
//	data := helpers.GetDataFromResponse(t, rec)
//
// # Database Assertions
//
// These read rows directly, bypassing repositories:
//
//	helpers.AssertJobStatus(t, tdb.DB, job.ID, model.JobStatusCancelled)
//	helpers.AssertRecruitmentStatus(t, tdb.DB, rec.ID, model.RecruitmentStatusActive)
//	helpers.AssertRecordNotExists(t, tdb.DB, progressID)
package helpers

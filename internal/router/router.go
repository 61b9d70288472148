package router

import (
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/arena-api/internal/handler"
	"github.com/noah-isme/arena-api/internal/middleware"
)

// Dependencies bundles everything route registration needs.
type Dependencies struct {
	JWTSecret string

	Health      *handler.HealthHandler
	Challenges  *handler.ChallengeHandler
	Lifecycle   *handler.LifecycleHandler
	Submissions *handler.SubmissionHandler
	PeerReviews *handler.PeerReviewHandler
}

// Register wires all routes onto the app. Lifecycle transitions are
// teacher-only; submission and review endpoints are open to any authenticated
// participant, with ownership enforced in the service layer.
func Register(app *fiber.App, deps Dependencies) {
	app.Get("/health", deps.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	authenticated := api.Group("", middleware.JWTProtected(deps.JWTSecret))

	teacherOnly := middleware.RequireRole("teacher", "admin")

	challenges := authenticated.Group("/challenges")
	challenges.Post("", teacherOnly, deps.Challenges.Create)
	challenges.Get("/:id", deps.Challenges.Get)
	challenges.Put("/:id", teacherOnly, deps.Challenges.Update)
	challenges.Post("/:id/publish", teacherOnly, deps.Challenges.Publish)
	challenges.Post("/:id/unpublish", teacherOnly, deps.Challenges.Unpublish)
	challenges.Post("/:id/settings", teacherOnly, deps.Challenges.AttachSetting)
	challenges.Post("/:id/join", deps.Challenges.Join)

	challenges.Post("/:id/assign-matches", teacherOnly, deps.Lifecycle.AssignMatches)
	challenges.Post("/:id/start-coding", teacherOnly, deps.Lifecycle.StartCoding)
	challenges.Post("/:id/end-coding", teacherOnly, deps.Lifecycle.EndCoding)
	challenges.Post("/:id/assign-peer-reviews", teacherOnly, deps.Lifecycle.AssignPeerReviews)
	challenges.Post("/:id/start-peer-review", teacherOnly, deps.Lifecycle.StartPeerReview)
	challenges.Post("/:id/end-peer-review", teacherOnly, deps.Lifecycle.EndPeerReview)
	challenges.Post("/:id/compute-scores", teacherOnly, deps.Lifecycle.ComputeScores)
	challenges.Get("/:id/stats", deps.Lifecycle.Stats)
	challenges.Get("/:id/results", deps.Lifecycle.Results)

	challenges.Get("/:id/my-match", deps.Submissions.MyMatch)
	challenges.Post("/:id/submissions", middleware.RateLimit("submit", 6, time.Minute), deps.Submissions.Submit)
	challenges.Post("/:id/runs", middleware.RateLimit("run", 12, time.Minute), deps.Submissions.RunCustomInput)

	challenges.Get("/:id/reviews", deps.PeerReviews.MyAssignments)

	reviews := authenticated.Group("/reviews")
	reviews.Post("/:id/feedback-tests", deps.PeerReviews.SubmitFeedbackTests)
	reviews.Post("/:id/vote", deps.PeerReviews.CastVote)

	settings := authenticated.Group("/match-settings", teacherOnly)
	settings.Post("", deps.Challenges.CreateMatchSetting)
	settings.Put("/:id", deps.Challenges.UpdateMatchSetting)
}

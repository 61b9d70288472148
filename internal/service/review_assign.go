package service

// reviewCandidate is one valid submission eligible for peer review, tagged
// with its author so the engine can exclude self-review.
type reviewCandidate struct {
	SubmissionID uint
	AuthorID     uint
}

// reviewAssignment pairs a reviewer with a submission to review.
type reviewAssignment struct {
	ReviewerID   uint
	SubmissionID uint
	IsExtra      bool
}

// assignReviews gives every submission in one problem group `target` distinct
// reviewers drawn from the other submissions' authors. When the group is too
// small the target is clamped to group size minus one. Reviewers are chosen
// greedily by lowest current load, which keeps the spread between the most
// and least loaded reviewer within one; any assignment pushing a reviewer
// past the fair-share baseline ceil(total/groupSize) is flagged IsExtra.
func assignReviews(group []reviewCandidate, target int) []reviewAssignment {
	n := len(group)
	if n < 2 || target < 1 {
		return nil
	}

	perSubmission := target
	if perSubmission > n-1 {
		perSubmission = n - 1
	}

	total := n * perSubmission
	baseline := (total + n - 1) / n

	load := make(map[uint]int, n)
	for _, candidate := range group {
		load[candidate.AuthorID] = 0
	}

	assignments := make([]reviewAssignment, 0, total)

	for i, candidate := range group {
		// Candidate reviewers are every other author, preferring the least
		// loaded; index order breaks ties deterministically.
		type reviewerOption struct {
			authorID uint
			index    int
		}

		options := make([]reviewerOption, 0, n-1)
		for j := 1; j < n; j++ {
			other := group[(i+j)%n]
			options = append(options, reviewerOption{authorID: other.AuthorID, index: j})
		}

		for assigned := 0; assigned < perSubmission; assigned++ {
			best := -1
			for k, option := range options {
				if best == -1 || load[option.authorID] < load[options[best].authorID] {
					best = k
				}
			}
			if best == -1 {
				break
			}

			reviewer := options[best].authorID
			options = append(options[:best], options[best+1:]...)

			load[reviewer]++
			assignments = append(assignments, reviewAssignment{
				ReviewerID:   reviewer,
				SubmissionID: candidate.SubmissionID,
				IsExtra:      load[reviewer] > baseline,
			})
		}
	}

	return assignments
}

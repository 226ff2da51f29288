package exercise

import (
	"sort"
	"strings"

	"github.com/ayusman/formcoach/internal/pose"
)

// highlightGroups maps feedback keywords to the landmarks a renderer should
// highlight for them.
var highlightGroups = []struct {
	keywords []string
	indices  []int
}{
	{
		keywords: []string{"leg", "knee", "stand"},
		indices:  []int{pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle},
	},
	{
		keywords: []string{"arm", "elbow"},
		indices:  []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftElbow, pose.RightElbow, pose.LeftWrist, pose.RightWrist},
	},
	{
		keywords: []string{"hip"},
		indices:  []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee},
	},
	{
		keywords: []string{"head"},
		indices:  []int{pose.Nose, pose.LeftEar, pose.RightEar, pose.LeftShoulder, pose.RightShoulder},
	},
	{
		keywords: []string{"twist", "level"},
		indices:  []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip},
	},
	{
		keywords: []string{"hand"},
		indices:  []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftWrist, pose.RightWrist, pose.LeftIndex, pose.RightIndex},
	},
	{
		keywords: []string{"feet", "foot", "ankle", "toe"},
		indices:  []int{pose.LeftAnkle, pose.RightAnkle, pose.LeftHeel, pose.RightHeel, pose.LeftFootIndex, pose.RightFootIndex},
	},
	{
		keywords: []string{"chest", "lean", "torso"},
		indices:  []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip},
	},
}

// LandmarksForFeedback returns the sorted landmark indices related to a
// feedback message, or nil when the message names no body part.
func LandmarksForFeedback(feedback string) []int {
	text := strings.ToLower(feedback)

	seen := make(map[int]bool)
	for _, g := range highlightGroups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				for _, idx := range g.indices {
					seen[idx] = true
				}
				break
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	result := make([]int, 0, len(seen))
	for idx := range seen {
		result = append(result, idx)
	}
	sort.Ints(result)
	return result
}

package pose

// Bone connects two landmarks for drawing.
type Bone struct {
	From, To Landmark
}

// Bones is the limb set drawn for a skeleton overlay. Face landmarks are drawn as
// joints only.
var Bones = []Bone{
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow},
	{LeftElbow, LeftWrist},
	{RightShoulder, RightElbow},
	{RightElbow, RightWrist},
	{LeftShoulder, LeftHip},
	{RightShoulder, RightHip},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle},
	{RightHip, RightKnee},
	{RightKnee, RightAnkle},
}

// XCenter is the mean x of all keypoints, used to order people left to right.
func (p Person) XCenter() float64 {
	if len(p) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range p {
		sum += kp.X
	}
	return sum / float64(len(p))
}

// Bounds returns the keypoint bounding box as min and max corners.
func (p Person) Bounds() (minPt, maxPt Point, ok bool) {
	if len(p) == 0 {
		return Point{}, Point{}, false
	}
	minPt = Point{X: p[0].X, Y: p[0].Y}
	maxPt = minPt
	for _, kp := range p[1:] {
		minPt.X = min(minPt.X, kp.X)
		minPt.Y = min(minPt.Y, kp.Y)
		maxPt.X = max(maxPt.X, kp.X)
		maxPt.Y = max(maxPt.Y, kp.Y)
	}
	return minPt, maxPt, true
}

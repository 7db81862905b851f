// Package skew estimates and corrects the rotation of a binarized page.
//
// The Estimator finds straight lines with a Canny edge pass followed by a
// standard Hough transform and reports the median line normal angle minus 90
// degrees. Staff lines dominate the vote on sheet music, so a horizontal
// staff yields 0 and a page whose lines fall toward the right yields a
// positive angle. The Deskewer rotates by exactly that angle about the page
// center (counter-clockwise for positive values), which levels the staves.
package skew

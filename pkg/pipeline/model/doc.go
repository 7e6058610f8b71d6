// Package model provides the data structures shared by the pipeline package and its options.
// It defines the step descriptions handed to options, the outcome of each step and the result of a run,
// so that options such as measure and drawer do not depend on the pipeline itself.
package model

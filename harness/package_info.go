// Package harness contains the generic scenario-execution machinery that is
// independent of what is being verified.
//
// The general model is:
//
// 1. A scenario suite is a tree of named scenarios, each executed by a
// function that receives a Context. The Context is similar to Go's
// *testing.T: scenario code reports failures through it and can abort
// immediately with FailNow.
//
// 2. Scenarios run strictly sequentially. Each scenario may carry a hard
// deadline; a scenario that overruns it is abandoned and reported as timed
// out, which is a distinct outcome from an assertion failure.
//
// 3. Results are accumulated for the whole run and reported at the end.
//
// The domain-specific code that knows what is being verified lives in the
// scenarios package, layered on top of this one.
package harness

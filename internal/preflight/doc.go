// Package preflight provides readiness checks for the engine and the
// filesystem paths omrpipe depends on.
//
// These checks run in two contexts:
//   - The process and batch commands call RunAll before converting anything.
//     If any check fails, the command stops before archiving a single document.
//   - The CLI "omrpipe status" command renders every check together with the
//     dependency table and a ledger summary.
package preflight

// Package preflight verifies the environment before pipeline execution:
// toolkit and configuration directories, dispatcher availability, workspace
// writability, and free disk space. Failing early turns mid-run surprises
// into configuration errors.
package preflight

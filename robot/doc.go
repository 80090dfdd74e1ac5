// Package robot implements the on-robot agent: the authority for the
// robot's own hit state. It applies operator control ticks to the
// drivetrain, fires the IR emitter with cooldown gating, decodes
// incoming IR into hit reports, and keeps the coordinator informed.
//
// Safety behavior is local and unconditional: motion stops when
// control ticks stop arriving, and a long command silence drops the
// drivetrain into standby.
package robot

// Package actuator defines the rover's drive motor and servos and persists
// servo calibration.
//
// Hardware drivers implement Motor and Servo. SimMotor and SimServo stand in
// for them on hosts without PWM outputs.
package actuator

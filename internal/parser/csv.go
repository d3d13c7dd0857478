package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"IotCarRC/internal/model"
)

// motorLinePrefix tags a motor line written to the motor controller.
const motorLinePrefix = "CTRL"

// MotorLineToCSV converts a MotorCommand into the line sent to the motor controller.
// Format: CTRL,LEFT,RIGHT,DIRECTION,MODE
func MotorLineToCSV(c model.MotorCommand) string {
	return fmt.Sprintf("%s,%d,%d,%d,%d",
		motorLinePrefix, c.LeftSpeed, c.RightSpeed, int(c.Direction), int(c.Mode))
}

// ParseMotorLineCSV parses a motor line back into a MotorCommand. The algorithm
// is not part of the line and is left at its zero value.
func ParseMotorLineCSV(line string) (model.MotorCommand, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 5 {
		return model.MotorCommand{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	if fields[0] != motorLinePrefix {
		return model.MotorCommand{}, fmt.Errorf("unexpected line tag %q", fields[0])
	}

	left, err := strconv.Atoi(fields[1])
	if err != nil {
		return model.MotorCommand{}, errors.New("invalid left speed")
	}
	right, err := strconv.Atoi(fields[2])
	if err != nil {
		return model.MotorCommand{}, errors.New("invalid right speed")
	}
	dir, err := strconv.Atoi(fields[3])
	if err != nil {
		return model.MotorCommand{}, errors.New("invalid direction")
	}
	mode, err := strconv.Atoi(fields[4])
	if err != nil {
		return model.MotorCommand{}, errors.New("invalid mode")
	}

	cmd := model.MotorCommand{
		LeftSpeed:  left,
		RightSpeed: right,
		Direction:  model.DrivingDirection(dir),
		Mode:       model.DrivingMode(mode),
	}
	if err := cmd.Validate(); err != nil {
		return model.MotorCommand{}, err
	}
	return cmd, nil
}

/*
NAME
  egress.go

DESCRIPTION
  egress.go translates a smoothed Command into the downstream drone's
  discrete directional token surface: move/up, move/down, move/left,
  move/right, yaw/left, yaw/right, or stop, chosen by priority
  vertical > lateral > yaw. vx is never transmitted.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package autopilot

import "github.com/corvidflight/visionpilot/pipeline/config"

// Token is a discrete directional command accepted by the downstream
// drone's egress endpoint.
type Token string

const (
	TokenMoveUp    Token = "move/up"
	TokenMoveDown  Token = "move/down"
	TokenMoveLeft  Token = "move/left"
	TokenMoveRight Token = "move/right"
	TokenYawLeft   Token = "yaw/left"
	TokenYawRight  Token = "yaw/right"
	TokenStop      Token = "stop"
)

// ToToken translates cmd into a single discrete token, choosing the first
// non-deadband component in priority order vertical > lateral > yaw. If no
// component clears its deadband, it returns TokenStop. vx is never
// consulted: the target vehicle lacks forward/backward support.
func ToToken(cmd Command, cfg config.Config) Token {
	deadband := cfg.Deadband
	if deadband == 0 {
		deadband = config.DefaultDeadband
	}
	yawDeadband := cfg.YawDeadband
	if yawDeadband == 0 {
		yawDeadband = config.DefaultYawDeadband
	}

	if abs(cmd.VZ) > deadband {
		if cmd.VZ > 0 {
			return TokenMoveUp
		}
		return TokenMoveDown
	}
	if abs(cmd.VY) > deadband {
		if cmd.VY > 0 {
			return TokenMoveLeft
		}
		return TokenMoveRight
	}
	if abs(cmd.Yaw) > yawDeadband {
		if cmd.Yaw > 0 {
			return TokenYawLeft
		}
		return TokenYawRight
	}
	return TokenStop
}

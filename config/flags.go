/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RegisterFlags wires --config and --log-level onto cmd and binds them into
// v, letting CLI flags override the on-disk configuration.
func RegisterFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.PersistentFlags().String("config", "config.ini", "path to config.ini")
	cmd.PersistentFlags().String("log-level", "info", "log level: fatal|error|warn|info|debug")

	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
}

// Path returns the resolved config.ini path, flag overriding default.
func Path(v *viper.Viper) string {
	if p := v.GetString("config"); p != "" {
		return p
	}
	return "config.ini"
}

// LogLevel returns the resolved log level flag value.
func LogLevel(v *viper.Viper) string {
	if l := v.GetString("log-level"); l != "" {
		return l
	}
	return "info"
}

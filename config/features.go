package config

// defaultFeatureNames are the engineered molecule, atom and coupling-type
// statistics used by the reference run.
func defaultFeatureNames() []string {
	return []string{
		"MoleculeType",
		"MoleculeType0",
		"Atom0",
		"Atom1",
		"AtomX0",
		"AtomX1",
		"AtomY0",
		"AtomY1",
		"AtomZ0",
		"AtomZ1",
		"MoleculeDistance",
		"MoleculeDistanceX",
		"MoleculeDistanceY",
		"MoleculeDistanceZ",
		"MoleculeCount",
		"MoleculeX0Statistics",
		"MoleculeX1Statistics",
		"MoleculeY0Statistics",
		"MoleculeY1Statistics",
		"MoleculeZ0Statistics",
		"MoleculeZ1Statistics",
		"MoleculeDistanceStatistics",
		"MoleculeDistanceXStatistics",
		"MoleculeDistanceYStatistics",
		"MoleculeDistanceZStatistics",
		"Atom0Count",
		"Atom1Count",
		"Atom0X1Statistics",
		"Atom1X0Statistics",
		"Atom0Y1Statistics",
		"Atom1Y0Statistics",
		"Atom0Z1Statistics",
		"Atom1Z0Statistics",
		"Atom0DistanceStatistics",
		"Atom1DistanceStatistics",
		"Atom0DistanceXStatistics",
		"Atom1DistanceXStatistics",
		"Atom0DistanceYStatistics",
		"Atom1DistanceYStatistics",
		"Atom0DistanceZStatistics",
		"Atom1DistanceZStatistics",
		"TypeX0Statistics",
		"TypeX1Statistics",
		"TypeY0Statistics",
		"TypeY1Statistics",
		"TypeZ0Statistics",
		"TypeZ1Statistics",
		"TypeDistanceStatistics",
		"TypeDistanceXStatistics",
		"TypeDistanceYStatistics",
		"TypeDistanceZStatistics",
	}
}
